// Package preflight provides readiness checks for the external tools,
// filesystem paths and backend that jimaku depends on.
//
// These checks run in two contexts:
//   - "jimaku run" calls RunAll before extracting anything so a missing
//     binary or unwritable directory fails fast instead of after minutes of
//     demuxing.
//   - "jimaku status" renders every check, including the optional Gemini
//     reachability probe.
package preflight
