// Package n2k contains NMEA 2000 addressing and message definitions layered on
// top of the fast-packet transport: 29 bit CAN identifier packing, the set of
// PGNs that use fast packets, and encoders for the messages we produce.
package n2k
