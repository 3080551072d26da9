package client

import "fmt"

// create subject strings for the bus bridge

// SubjectRx is the subject reassembled messages of pgn are published on
func SubjectRx(bus string, pgn uint32) string {
	return fmt.Sprintf("n2k.%v.rx.%v", bus, pgn)
}

// SubjectRxAll matches every received message on a bus
func SubjectRxAll(bus string) string {
	return fmt.Sprintf("n2k.%v.rx.*", bus)
}

// SubjectTx is the subject payloads for pgn are sent to for transmission
func SubjectTx(bus string, pgn uint32) string {
	return fmt.Sprintf("n2k.%v.tx.%v", bus, pgn)
}

// SubjectTxAll matches every transmit request on a bus
func SubjectTxAll(bus string) string {
	return fmt.Sprintf("n2k.%v.tx.*", bus)
}

// SubjectSignal is the subject a decoded database signal is published on
func SubjectSignal(bus, msg, signal string) string {
	return fmt.Sprintf("n2k.%v.sig.%v.%v", bus, msg, signal)
}
