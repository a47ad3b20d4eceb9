// Package packetio provides pooled, chained byte buffers for binary and text
// I/O. A Packet is a single-pass reader over a chain of chunks borrowed from
// a Pool, a Builder accumulates writes into such a chain and hands it off
// without copying, and a Channel connects one producer and one consumer with
// bounded buffering so a writer blocks while the reader lags behind.
package packetio
