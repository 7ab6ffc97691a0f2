// Package manager owns the model slots used by the analysis pipeline. There is
// one slot per category (classify, summarize, generate); each is loaded at
// most once for the life of the process and then shared by every request.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, readiness getters.
//   - config.go: Config and package defaults.
//   - types.go: slot states and the slot record.
//   - adapter_iface.go: Loader and the handle interfaces backends implement.
//   - acquire.go: Acquire and the load-once state machine.
//   - admission.go: per-category queueing and inference admission.
//   - infer.go: Infer, the worker boundary used by pipeline stages.
//   - warmup.go: Warmup (preload) and Close.
//   - status_report.go: Status reporting for /status.
//   - sanity.go: SanityCheck for the `check` command.
//   - errors.go: error types and helpers (IsLoadError, IsTooBusy, ...).
//   - events.go, eventpub_*.go: lifecycle events and publishers.
//
// A slot moves unloaded -> loading -> loaded|failed and never back. A failed
// slot keeps its error; recovery requires a process restart.
package manager
