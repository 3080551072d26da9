/*
Package client connects NMEA 2000 CAN buses to NATS.

A [CanBusClient] reads frames from a [CanConn], reassembles fast-packet
messages, decodes plain CAN frames with KCD databases, and publishes the
results on NATS subjects. Payloads published to the bus transmit subject are
split into frames and written to the bus.

Two bus connections are provided: Linux SocketCAN ([DialSocketCan]) and
serial adapters that speak the Lawicel SLCAN protocol ([DialSlcan]).

Subjects used:

	n2k.<bus>.rx.<pgn>             reassembled message payloads
	n2k.<bus>.tx.<pgn>             payloads to transmit
	n2k.<bus>.sig.<msg>.<signal>   database decoded signal values

Message headers carry the NMEA 2000 address fields: pgn, src, dst, prio.
*/
package client
