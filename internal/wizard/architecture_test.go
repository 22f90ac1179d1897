package wizard

import (
	"testing"

	"secretsanta/testutil"
)

func TestWizardHasNoDrivers(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.DriverImportForbidden, "wizard state is computed from profiles alone")
}
