// Package fmtx is the formatting used on logging paths. Host builds use
// fmt; MCU builds use a small formatter covering the verbs the firmware
// logs with (%s %v %d %x %X %q %t %c %%, width, '0' and '-' flags).
package fmtx
