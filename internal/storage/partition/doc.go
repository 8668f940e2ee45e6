// Package partition discovers raw partitions by label and announces their
// arrival and departure to registered listeners.
//
// Watcher follows a "by-name" directory such as /dev/block/by-name with
// fsnotify. Static announces a fixed set of partitions, which is how
// development setups run against RAM-backed partitions.
package partition
