// Package async provides safe detached goroutine execution with panic
// recovery and timeouts. The audit fire-and-forget path depends on its
// started-before-return guarantee.
package async
