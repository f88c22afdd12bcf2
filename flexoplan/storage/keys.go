package storage

import (
	"fmt"
)

// Key layout. Zero-padded decimal ids keep prefix scans in id order.
//
//	machine:<id>            -> Machine JSON
//	order:<id>              -> Order JSON
//	queuerow:<row id>       -> QueueRow JSON
//	queuemach:<machine>:<row id> -> row id (per-machine index)
//	queueorder:<order id>   -> row id (order lookup index)
//	seq:queue               -> last allocated row id
const (
	machinePrefix    = "machine:"
	orderPrefix      = "order:"
	queueRowPrefix   = "queuerow:"
	queueMachPrefix  = "queuemach:"
	queueOrderPrefix = "queueorder:"
	queueSeqKey      = "seq:queue"
)

func machineKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", machinePrefix, id))
}

func orderKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", orderPrefix, id))
}

func queueRowKey(rowID int64) []byte {
	return []byte(fmt.Sprintf("%s%019d", queueRowPrefix, rowID))
}

func queueMachKey(machineID int, rowID int64) []byte {
	return []byte(fmt.Sprintf("%s%010d:%019d", queueMachPrefix, machineID, rowID))
}

func queueMachScanPrefix(machineID int) []byte {
	return []byte(fmt.Sprintf("%s%010d:", queueMachPrefix, machineID))
}

func queueOrderKey(orderID int) []byte {
	return []byte(fmt.Sprintf("%s%010d", queueOrderPrefix, orderID))
}
