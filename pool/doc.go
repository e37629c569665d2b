// Package pool
// Author: momentics <momentics@gmail.com>
//
// Size-classed byte buffer recycling for the frame writer. Short messages
// are assembled header plus payload in a single pooled buffer so that one
// write reaches the socket.
package pool
