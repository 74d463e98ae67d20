/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultReservedStoreSize = 256 << 20 // 256MiB staging buffer cap
	_DefaultCloseGraceMS      = 1000      // wait at most 1s for in-flight readers
)

var (
	ReservedStoreSize = parseOrDefault("SCARCHIVE_RESERVED_STORE_SIZE", _DefaultReservedStoreSize, 4096)
	CloseGraceMS      = parseOrDefault("SCARCHIVE_CLOSE_GRACE_MS", _DefaultCloseGraceMS, 10)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("scarchive: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("scarchive: value too small for " + key)
	} else {
		return ret
	}
}
