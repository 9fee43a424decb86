// Package preflight provides readiness checks for the binaries and
// filesystem paths a render depends on.
//
// These checks run in two contexts:
//   - "montage render" calls RunAll before planning. A failing check aborts
//     the render before any chunk is scheduled.
//   - "montage deps" prints CheckSystemDeps and CheckEnvironment.
//
// Optional features are only checked when enabled in the config.
package preflight
