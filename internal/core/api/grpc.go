package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/solatis/rulekeeper/internal/protobuf/rulekeeper/condition/v1"
	"github.com/solatis/rulekeeper/internal/types"
)

// GRPCService adapts ConditionService to the gRPC ConditionService contract.
// Requests and responses are converted at this boundary only; errors leave
// through StatusError.
type GRPCService struct {
	pb.UnimplementedConditionServiceServer
	service *ConditionService
}

// NewGRPCService wraps service for gRPC registration.
func NewGRPCService(service *ConditionService) (*GRPCService, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	return &GRPCService{service: service}, nil
}

// TestCondition evaluates a rule against request params.
func (g *GRPCService) TestCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ruleID, err := ruleIDFrom(req)
	if err != nil {
		return nil, StatusError(err)
	}

	params := types.Input{}
	if v, ok := req.GetFields()["params"]; ok {
		s := v.GetStructValue()
		if s == nil {
			return nil, StatusError(fmt.Errorf("%w: params must be an object", ErrInvalidArgument))
		}
		params = s.AsMap()
	}

	res, err := g.service.TestCondition(ctx, ruleID, params)
	if err != nil {
		return nil, StatusError(err)
	}

	logs := make([]any, 0, len(res.Logs))
	for _, rec := range res.Logs {
		logs = append(logs, map[string]any{
			"node_id":    float64(rec.NodeID),
			"node_name":  rec.NodeName,
			"node_type":  string(rec.NodeType),
			"result":     rec.Result,
			"detail":     rec.Detail,
			"elapsed_ms": durationMillis(rec.Elapsed),
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"evaluation_id":     res.EvaluationID,
		"result":            res.Result,
		"execution_time_ms": durationMillis(res.ExecutionTime),
		"logs":              logs,
		"error":             res.Error,
	})
	if err != nil {
		return nil, StatusError(fmt.Errorf("failed to encode response: %w", err))
	}
	return out, nil
}

// GetConditionTree returns a rule's records.
func (g *GRPCService) GetConditionTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ruleID, err := ruleIDFrom(req)
	if err != nil {
		return nil, StatusError(err)
	}

	records, err := g.service.Records(ctx, ruleID)
	if err != nil {
		return nil, StatusError(err)
	}

	nodes, err := recordsToValue(records)
	if err != nil {
		return nil, StatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"rule_id": structpb.NewStringValue(string(ruleID)),
		"nodes":   nodes,
	}}, nil
}

// SaveConditionTree replaces a rule's tree.
func (g *GRPCService) SaveConditionTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ruleID, err := ruleIDFrom(req)
	if err != nil {
		return nil, StatusError(err)
	}

	records, err := recordsFromValue(req.GetFields()["nodes"])
	if err != nil {
		return nil, StatusError(err)
	}

	if err := g.service.SaveTree(ctx, ruleID, records); err != nil {
		return nil, StatusError(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"rule_id":    structpb.NewStringValue(string(ruleID)),
		"node_count": structpb.NewNumberValue(float64(len(records))),
	}}, nil
}

// DeleteConditionTree removes a rule's tree.
func (g *GRPCService) DeleteConditionTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ruleID, err := ruleIDFrom(req)
	if err != nil {
		return nil, StatusError(err)
	}

	if err := g.service.DeleteTree(ctx, ruleID); err != nil {
		return nil, StatusError(err)
	}
	return &structpb.Struct{}, nil
}

func ruleIDFrom(req *structpb.Struct) (types.RuleID, error) {
	raw := req.GetFields()["rule_id"].GetStringValue()
	if raw == "" {
		return "", fmt.Errorf("%w: rule_id required", ErrInvalidArgument)
	}
	ruleID, err := types.ParseRuleID(raw)
	if err != nil {
		return "", fmt.Errorf("%w: rule_id: %v", ErrInvalidArgument, err)
	}
	return ruleID, nil
}

// recordsToValue encodes records through their JSON form.
// Node ids travel as doubles and stay exact up to 2^53.
func recordsToValue(records []types.NodeRecord) (*structpb.Value, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	list, err := structpb.NewList(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	return structpb.NewListValue(list), nil
}

// recordsFromValue decodes a list of node objects, rejecting unknown fields.
func recordsFromValue(v *structpb.Value) ([]types.NodeRecord, error) {
	if v.GetListValue() == nil {
		return nil, fmt.Errorf("%w: nodes must be a list", ErrInvalidArgument)
	}

	data, err := json.Marshal(v.AsInterface())
	if err != nil {
		return nil, fmt.Errorf("%w: nodes: %v", ErrInvalidArgument, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var records []types.NodeRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: nodes: %v", ErrInvalidArgument, err)
	}
	return records, nil
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
