package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulekeeper/internal/core/api"
	pb "github.com/solatis/rulekeeper/internal/protobuf/rulekeeper/condition/v1"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a rule's condition tree and print the trace",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("rule", "", "rule id")
	evaluateCmd.Flags().String("params", "{}", "parameters as a JSON object, or @path to a JSON file")
	evaluateCmd.Flags().String("addr", "", "evaluate on a running server at host:port instead of locally")
	evaluateCmd.MarkFlagRequired("rule")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("rule")
	ruleID, err := types.ParseRuleID(raw)
	if err != nil {
		return fmt.Errorf("invalid rule id %q: %w", raw, err)
	}
	paramsArg, _ := cmd.Flags().GetString("params")
	params, err := parseParams(paramsArg)
	if err != nil {
		return err
	}

	var result *api.TestResult
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		result, err = evaluateRemote(cmd, addr, ruleID, params)
	} else {
		result, err = evaluateLocal(cmd, ruleID, params)
	}
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	return nil
}

func evaluateLocal(cmd *cobra.Command, ruleID types.RuleID, params types.Input) (*api.TestResult, error) {
	rt, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	service, err := rt.newService(cmd.Context(), nil)
	if err != nil {
		return nil, err
	}
	return service.TestCondition(cmd.Context(), ruleID, params)
}

func evaluateRemote(cmd *cobra.Command, addr string, ruleID types.RuleID, params types.Input) (*api.TestResult, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	req, err := structpb.NewStruct(map[string]any{
		"rule_id": string(ruleID),
		"params":  map[string]any(params),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	resp, err := pb.NewConditionServiceClient(conn).TestCondition(cmd.Context(), req)
	if err != nil {
		return nil, err
	}

	fields := resp.GetFields()
	result := &api.TestResult{
		EvaluationID:  fields["evaluation_id"].GetStringValue(),
		Result:        fields["result"].GetBoolValue(),
		ExecutionTime: millis(fields["execution_time_ms"].GetNumberValue()),
		Error:         fields["error"].GetStringValue(),
	}
	for _, v := range fields["logs"].GetListValue().GetValues() {
		log := v.GetStructValue().GetFields()
		result.Logs = append(result.Logs, rules.TraceRecord{
			NodeID:   types.NodeID(log["node_id"].GetNumberValue()),
			NodeName: log["node_name"].GetStringValue(),
			NodeType: rules.NodeType(log["node_type"].GetStringValue()),
			Result:   log["result"].GetBoolValue(),
			Detail:   log["detail"].GetStringValue(),
			Elapsed:  millis(log["elapsed_ms"].GetNumberValue()),
		})
	}
	return result, nil
}

// parseParams decodes a JSON object given inline or as @path.
func parseParams(arg string) (types.Input, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
	}

	params := types.Input{}
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return params, nil
}

func printResult(w io.Writer, res *api.TestResult) {
	fmt.Fprintf(w, "result:   %v\n", res.Result)
	fmt.Fprintf(w, "duration: %s\n", res.ExecutionTime)
	if res.Error != "" {
		fmt.Fprintf(w, "error:    %s\n", res.Error)
	}
	if len(res.Logs) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tTYPE\tNAME\tRESULT\tELAPSED\tDETAIL")
	for _, rec := range res.Logs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%s\t%s\n",
			rec.NodeID, rec.NodeType, rec.NodeName, rec.Result, rec.Elapsed, rec.Detail)
	}
	tw.Flush()
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
