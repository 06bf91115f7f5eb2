// =============================================================================
// Order/Invoice Reconciler - Main Entry Point
// =============================================================================
//
// USAGE:
//   reconciler reconcile  - Reconcile one order ledger against one invoice
//   reconciler batch      - Reconcile every run in the input directory
//   reconciler profiles   - Validate and list reconciliation profiles
//   reconciler version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Readers, reconciliation engine, report, pipeline
//   - pkg/       : File management utilities
//   - profiles/  : Supplier reconciliation profiles (YAML)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/order-invoice-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
