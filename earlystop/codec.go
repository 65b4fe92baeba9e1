package earlystop

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MarshalSnapshot encodes s as indented JSON using the flat field mapping,
// so non-finite best values survive the trip
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s.Map(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %v", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes JSON produced by MarshalSnapshot. Malformed
// JSON, missing fields and wrong-typed fields all yield an
// *InvalidStateError.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Snapshot{}, invalidState("", "malformed JSON: %v", err)
	}
	return SnapshotFromMap(m)
}

// MarshalSnapshotBinary encodes s in a self-describing protobuf form
// (a google.protobuf.Struct), readable by any language with protobuf
// support and exact for float64 values
func MarshalSnapshotBinary(s Snapshot) ([]byte, error) {
	st, err := structpb.NewStruct(s.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot struct: %v", err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %v", err)
	}
	return data, nil
}

// UnmarshalSnapshotBinary decodes the protobuf form produced by
// MarshalSnapshotBinary
func UnmarshalSnapshotBinary(data []byte) (Snapshot, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return Snapshot{}, invalidState("", "malformed snapshot payload: %v", err)
	}
	return SnapshotFromMap(st.AsMap())
}
