package sysmem

import "runtime"

// Cleanse overwrites b with zeros. The write is pinned with a KeepAlive so
// the compiler cannot treat the buffer as dead and elide the stores, which
// is the whole point when b held key material.
func Cleanse(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b[0])
}
