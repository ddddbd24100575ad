package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/loan-assistant/agent/nodes/orchestrator"
)

type graphNode struct {
	name   string
	lambda *compose.Lambda
}

// turnPipeline lists the turn nodes in execution order; the graph is a
// straight chain from the first to the last.
func (o *Orchestrator) turnPipeline() []graphNode {
	return []graphNode{
		{"validate_request", compose.InvokableLambda(func(_ context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		})},
		{"load_or_create_state", compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, in, o.store)
		})},
		{"advance_dialogue", compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AdvanceDialogue(ctx, in, o.deps)
		})},
		{"save_state", compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveState(ctx, in, o.store)
		})},
		{"finalize_reply", compose.InvokableLambda(func(_ context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		})},
	}
}

func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	prev := compose.START
	for _, node := range o.turnPipeline() {
		if err := graph.AddLambdaNode(node.name, node.lambda); err != nil {
			return nil, fmt.Errorf("add node %s: %w", node.name, err)
		}
		if err := graph.AddEdge(prev, node.name); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", prev, node.name, err)
		}
		prev = node.name
	}
	if err := graph.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("add edge %s->%s: %w", prev, compose.END, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
