package query

import (
	"testing"

	"schoolcore/testutil"
)

func TestQueryStaysStorageAgnostic(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InfraImportForbidden, testutil.ServiceImportForbidden),
		"projections read a TransactionView only")
}
