// Package ir provides the constrained value types shared by every layer of
// coldfetch: field values, records and their canonical encoding.
//
// ir imports nothing internal. Key constraints:
//   - No float types anywhere; numbers are int64
//   - Object keys are ordered by UTF-16 code units when encoded
//   - Strings are NFC normalized at the canonical encoding boundary
package ir
