// Package ir provides the rule, action and transcript types shared by every
// interact package.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Actions are a closed tagged variant, resolved when a rule is built,
//     never inspected by value shape at dispatch time
//   - Sentinel patterns (EOF, TIMEOUT) never match literal text
//   - Transcript events are ordered by a logical seq, never wall-clock time
//   - All JSON tags use snake_case
package ir
