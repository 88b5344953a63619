// Package frame implements the partitioned, lazily evaluated dataset the EDA
// stage operates on.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│  ReadCSV    │────▶│   Frame     │────▶│  Executor   │
//	│ (schema +   │     │ (partition  │     │ (cluster    │
//	│  row split) │     │   tasks)    │     │  client)    │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                           │
//	                           ▼
//	                    ┌─────────────┐
//	                    │  SetKey     │
//	                    │ (xxhash     │
//	                    │  shuffle)   │
//	                    └─────────────┘
//
// A Frame is an ordered list of partition tasks sharing one Schema. Tasks
// are not run until Compute, Persist, Collect or WriteCSV is called with an
// Executor, which decides how many partitions are evaluated concurrently.
//
// Every value keeps its original CSV text, so columns that a transform does
// not touch are written back unchanged.
package frame
