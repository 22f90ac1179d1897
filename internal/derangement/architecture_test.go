package derangement

import (
	"testing"

	"secretsanta/testutil"
)

func TestDerangementIsPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.InternalImportForbidden, testutil.DriverImportForbidden),
		"the draw algorithm depends on domain types only")
}
