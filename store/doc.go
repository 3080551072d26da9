// Package store keeps a log of NMEA 2000 messages bridged on and off the CAN
// bus in a SQLite database.
package store
