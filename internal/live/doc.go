// Package live provides small reactive building blocks: observable cells,
// cells that load their value asynchronously, mediators that derive a value
// from other cells, and a keyed repository of cells.
//
// All value commits and observer callbacks run on a Loop, a single goroutine
// that plays the role of the notification thread. Loads run on their own
// goroutines and hand their result back to the Loop, so observers only ever
// see fully formed values and each cell has exactly one writer.
//
// Lifecycle follows the observer count of a cell:
//   - Inactive -> Active on the first Observe (OnActive hooks run)
//   - Active -> Inactive when the last observer cancels (OnInactive hooks run)
//
// Example usage:
//
//	loop := live.NewLoop()
//	defer loop.Stop()
//
//	cell := live.NewAsyncCell(loop, "packages", func(ctx context.Context) ([]string, error) {
//		return listPackages(ctx)
//	})
//	cell.OnActive(cell.Update)
//
//	cancel := cell.Observe(func(pkgs []string) {
//		fmt.Println(len(pkgs), "packages")
//	})
//	defer cancel()
package live
