package domain

import (
	"testing"

	"secretsanta/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.InternalImportForbidden, testutil.DriverImportForbidden),
		"domain types stay independent of services and drivers")
}

func TestDomainTransitiveDepsStayOutOfInternal(t *testing.T) {
	if testing.Short() {
		t.Skip("shells out to go list")
	}
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InternalImportForbidden, "domain must not pull internal packages")
}
