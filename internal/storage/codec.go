package storage

import (
	"encoding/json"
	"errors"

	"dasopt/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned stamps new records with the current schema and codec versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeFront(f model.FrontRecord) ([]byte, error) {
	return json.Marshal(f)
}

func DecodeFront(data []byte) (model.FrontRecord, error) {
	var front model.FrontRecord
	if err := json.Unmarshal(data, &front); err != nil {
		return model.FrontRecord{}, err
	}
	if err := checkVersion(front.VersionedRecord); err != nil {
		return model.FrontRecord{}, err
	}
	return front, nil
}

func EncodeCandidates(l model.CandidateLog) ([]byte, error) {
	return json.Marshal(l)
}

func DecodeCandidates(data []byte) (model.CandidateLog, error) {
	var log model.CandidateLog
	if err := json.Unmarshal(data, &log); err != nil {
		return model.CandidateLog{}, err
	}
	if err := checkVersion(log.VersionedRecord); err != nil {
		return model.CandidateLog{}, err
	}
	return log, nil
}

func EncodeMetrics(l model.MetricsLog) ([]byte, error) {
	return json.Marshal(l)
}

func DecodeMetrics(data []byte) (model.MetricsLog, error) {
	var log model.MetricsLog
	if err := json.Unmarshal(data, &log); err != nil {
		return model.MetricsLog{}, err
	}
	if err := checkVersion(log.VersionedRecord); err != nil {
		return model.MetricsLog{}, err
	}
	return log, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
