// Package kstat models a kernel statistics handle: named counters addressed
// by module:instance:name, each read into a set of typed named fields.
//
// Three handles are provided:
//
//   - Fake: an in-memory store for tests.
//   - Player: replays a YAML scenario one step per Update (see LoadScenario).
//   - the Linux handle returned by Open, which synthesizes the cpu_info, cpu
//     and pci_intrs counters from procfs and sysfs.
//
// Consumers never write through a Handle.
package kstat
