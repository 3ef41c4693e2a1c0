// Package testutil provides deterministic clocks, ID generators and fixture
// workbooks for tests across the pipeline packages.
package testutil
