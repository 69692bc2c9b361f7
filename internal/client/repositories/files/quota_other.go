//go:build !unix

package files

import "errors"

var errQuotaUnsupported = errors.New("free space not reported on this platform")

func hostFreeBytes(string) (int64, error) {
	return 0, errQuotaUnsupported
}
