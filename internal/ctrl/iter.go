package ctrl

import (
	"bytes"
	"encoding/binary"

	"github.com/gone-svc/initd/internal/registry"
)

// iterState is SVC_ITER's walk cursor, owned by the connection that
// opened it rather than the server (the client asks again and again
// on the same connection for "the next service"; a process-global
// cursor would corrupt concurrent walks from different clients).
type iterState struct {
	idx int
}

// iterNext returns the next service record for this connection's
// walk, with a sentinel (empty, job id and pid -1) on exhaustion.
func (s *Server) iterNext(iter *iterState) Record {
	all := s.Reg.All()
	if iter.idx >= len(all) {
		return Reply(true, encodeServiceRecord(nil))
	}
	svc := all[iter.idx]
	iter.idx++
	return Reply(true, encodeServiceRecord(svc))
}

// serviceRecord is the fixed-size projection of a registry.Service
// sent back over SVC_ITER/SVC_FIND.
type serviceRecord struct {
	JobID  int32
	State  uint8
	Kind   uint8
	_      [2]byte
	Pid    int32
	Name   [64]byte
	ID     [32]byte
}

func encodeServiceRecord(svc *registry.Service) []byte {
	var rec serviceRecord
	if svc == nil {
		rec.JobID = -1
		rec.Pid = -1
	} else {
		rec.JobID = int32(svc.JobID)
		rec.State = uint8(svc.State)
		rec.Kind = uint8(svc.Kind)
		rec.Pid = int32(svc.Pid)
		copy(rec.Name[:], svc.Name)
		copy(rec.ID[:], svc.ID)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, rec)
	return buf.Bytes()
}
