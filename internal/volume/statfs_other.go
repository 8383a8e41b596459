//go:build !(linux || darwin || freebsd)

package volume

func UsageOf(string) (Usage, error) {
	return Usage{}, ErrUnsupported
}
