package platform

import "runtime"

// archTriples maps runtime.GOARCH to the triple's arch component.
var archTriples = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "i686",
	"arm":   "armv7",
}

// DetectTargets returns the ordered list of triples the running host
// supports, most-preferred first. On a musl host that can execute glibc
// binaries through a compatibility shim, both ABIs are returned in
// fallback order; crateferry never probes for the shim itself, it only
// ever reads filesystem state, matching spec.md §4.B.
func DetectTargets() []Target {
	arch, ok := archTriples[runtime.GOARCH]
	if !ok {
		arch = runtime.GOARCH
	}

	switch runtime.GOOS {
	case "linux":
		return linuxTargets(arch)
	case "darwin":
		return []Target{NewTarget(arch + "-apple-darwin")}
	case "windows":
		return []Target{NewTarget(arch + "-pc-windows-msvc"), NewTarget(arch + "-pc-windows-gnu")}
	default:
		return []Target{NewTarget(arch + "-unknown-" + runtime.GOOS)}
	}
}

// linuxTargets orders the glibc/musl triples for the given architecture
// based on the host's detected libc. Both ABIs are returned on every host:
// a musl host that lacks a glibc compatibility shim will simply never have
// its second-choice candidates probed successfully by the fetcher, but the
// detector itself stays side-effect free and always offers the fallback.
func linuxTargets(arch string) []Target {
	env := "gnu"
	altEnv := "musl"
	if DetectLibc() == "musl" {
		env, altEnv = "musl", "gnu"
	}
	return []Target{
		NewTarget(arch + "-unknown-linux-" + env),
		NewTarget(arch + "-unknown-linux-" + altEnv),
	}
}
