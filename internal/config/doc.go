// Package config holds the run configuration shared, read-only, by every
// stage of a Harvest run, and the HCL loader that produces it.
//
// Configuration is read from one or more .hcl files. Scalar settings are
// top-level attributes; each tool may own a `tool "<name>" { ... }` block whose
// body is kept undecoded until the tool asks for it through DecodeTool. That
// keeps tool settings private to the tool while still letting every setting
// use HCL expressions such as `env.HOME` or `"${output}/build"`.
package config
