package persist

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flashlog/nvpersist/pkg/telemetry"
)

// LoadLegacy loads the current store first; if it holds no valid data,
// it falls back to legacy, a Store already constructed over the same
// backend region under an older version tag and (possibly) a different
// payload size. legacy is initialized here — LoadLegacy is the only
// entry point that may call Init on a caller's behalf — and is never
// written to: the fallback path is read-only by construction, since a
// partially-upgraded medium must survive a power loss mid-migration.
//
// On a successful legacy read, convert is handed the raw legacy payload
// and a destination buffer sized to current's PayloadSize, and must fill
// dst with the upgraded representation. LoadLegacy returns
// ResultSuccessLegacy in that case, ResultSuccess if current already had
// valid data, and ResultNoData if neither store holds anything.
func LoadLegacy(current, legacy *Store, dst []byte, convert func(oldPayload, newDst []byte) error) (Result, error) {
	ctx, span := current.telemetry.StartSpan(context.Background(), "nvpersist.load_legacy",
		attribute.String(telemetry.AttrComponent, telemetry.ComponentPersist))
	defer span.End()

	result, err := current.Load(dst)
	if err != nil {
		return result, err
	}
	if result == ResultSuccess {
		current.telemetry.RecordCounter(ctx, "nvpersist.load_legacy", 1,
			attribute.String(telemetry.AttrOperationType, telemetry.OpTypeLoadLegacy),
			attribute.String(telemetry.AttrResult, telemetry.ValueSuccess))
		return ResultSuccess, nil
	}

	current.logger.Info("loadlegacy: current store empty, scanning legacy region")

	if _, err := legacy.Init(); err != nil {
		return ResultFail, err
	}

	old := make([]byte, legacy.PayloadSize())
	result, err = legacy.Load(old)
	if err != nil {
		return result, err
	}
	if result != ResultSuccess {
		current.logger.Debug("loadlegacy: legacy region also empty")
		current.telemetry.RecordCounter(ctx, "nvpersist.load_legacy", 1,
			attribute.String(telemetry.AttrOperationType, telemetry.OpTypeLoadLegacy),
			attribute.String(telemetry.AttrResult, telemetry.ValueNoData))
		return ResultNoData, nil
	}

	if err := convert(old, dst); err != nil {
		current.logger.Error("loadlegacy: conversion failed: %v", err)
		current.telemetry.RecordCounter(ctx, "nvpersist.errors", 1,
			attribute.String(telemetry.AttrOperationType, telemetry.OpTypeLoadLegacy),
			attribute.String(telemetry.AttrResult, telemetry.ValueFail),
			attribute.String(telemetry.AttrErrorType, "convert"))
		return ResultFail, err
	}

	current.logger.Info("loadlegacy: converted legacy payload (%d bytes) to current format", len(old))
	current.telemetry.RecordCounter(ctx, "nvpersist.load_legacy", 1,
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeLoadLegacy),
		attribute.String(telemetry.AttrResult, telemetry.ValueSuccessLegacy))
	return ResultSuccessLegacy, nil
}
