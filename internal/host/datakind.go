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

package host

// DataKind tags every archived object or metadata reference.
type DataKind int32

const (
	KindNoData    DataKind = -1 // sentinel non-oop word
	KindNull      DataKind = 0
	KindKlass     DataKind = 1
	KindMethod    DataKind = 2
	KindString    DataKind = 3
	KindArray     DataKind = 4 // primitive array, reserved
	KindSysLoader DataKind = 5
	KindPlaLoader DataKind = 6
	KindPrimitive DataKind = 7
)

func (k DataKind) String() string {
	switch k {
	case KindNoData:
		return "no_data"
	case KindNull:
		return "null"
	case KindKlass:
		return "klass"
	case KindMethod:
		return "method"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindSysLoader:
		return "system_loader"
	case KindPlaLoader:
		return "platform_loader"
	case KindPrimitive:
		return "primitive"
	}
	return "unknown"
}
