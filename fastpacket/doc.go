/*
Package fastpacket implements the NMEA 2000 fast-packet transport used to carry
payloads larger than a single CAN frame.

A payload of up to 223 bytes is split into 8 byte frames. The first byte of
every frame holds a 3 bit sequence counter (shared by all frames of one
message) and a 5 bit frame counter. The first frame (frame counter 0) carries
the total payload length followed by 6 payload bytes, each consecutive frame
carries 7 more. Unused bytes are padded with 0xFF.

To transmit, build a [Message] with [MessageFromPayload] and send the frames
returned by [Message.PopFrame] in order. To receive, feed raw frames into
[Message.AddFrame] until it reports the message complete, then read the data
with [Message.Payload]. When frames from many senders are interleaved on one
bus, an [Assembler] keeps a message per stream.
*/
package fastpacket
