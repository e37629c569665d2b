// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transport provides the blocking TCP socket used under the
// WebSocket engine: connect, listen and accept on raw descriptors, a
// poll-based readiness wait, and a close path that drains pending input
// before releasing the descriptor so the peer never sees a reset.
package transport
