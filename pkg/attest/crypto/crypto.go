// Copyright 2025 Jason Stonebraker
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestSize is the length of the signed payload in bytes. Signing and
// verification always operate on a digest of this size, never on the
// variable-length canonical serialization itself.
const DigestSize = sha256.Size

// Digest computes the SHA-256 digest of the canonical serialization.
// This is the exact payload handed to the signature primitive.
func Digest(data []byte) [DigestSize]byte {
	return sha256.Sum256(data)
}

// DigestHex returns the lowercase hex encoding of Digest(data).
func DigestHex(data []byte) string {
	d := Digest(data)
	return hex.EncodeToString(d[:])
}
