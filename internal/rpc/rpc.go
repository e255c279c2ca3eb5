package rpc

import (
	"encoding/gob"
	"net"

	log "github.com/sandia-minimega/dfs/pkg/minilog"
)

// call is the request envelope written by a stub and read by a skeleton.
// Per the wire protocol, a single call carries the method name and its
// arguments; the static per-interface stub types take the place of a
// separate parameter-type descriptor list (see design notes).
type call struct {
	Method string
	Args   interface{}
}

// reply is the single response object a skeleton writes back.
type reply struct {
	Value interface{}
	Err   *Fault
}

// Invoke opens a fresh connection to addr, writes one call, reads back one
// reply, and closes the connection. This is the entire stub-side protocol:
// connection-per-call, no persistent state beyond the remote address.
func Invoke(addr, method string, args interface{}) (interface{}, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, Wrap(err)
	}
	defer conn.Close()

	if log.WillLog(log.DEBUG) {
		log.Debug("rpc invoke %v %v: %v", addr, method, args)
	}

	enc := gob.NewEncoder(conn)
	if err := enc.Encode(call{Method: method, Args: args}); err != nil {
		return nil, Wrap(err)
	}

	var rep reply
	dec := gob.NewDecoder(conn)
	if err := dec.Decode(&rep); err != nil {
		return nil, Wrap(err)
	}

	if rep.Err != nil {
		return nil, rep.Err
	}
	return rep.Value, nil
}
