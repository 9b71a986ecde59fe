package httpserver

import (
	"strconv"

	pkg_hash "github.com/Skotchmaster/shop_auth/internal/hash"
)

func hashOf(raw string) string { return pkg_hash.Sha256Hex(raw) }

func jsonNum(f float64) string { return strconv.FormatInt(int64(f), 10) }
