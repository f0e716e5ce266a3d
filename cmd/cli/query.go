// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aiteam0/rag-lab/cmd/common"
	"github.com/aiteam0/rag-lab/pkg/workflow"

	"github.com/google/uuid"
)

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "Path to configuration file")
	interactive := fs.Bool("interactive", false, "Run in interactive mode")
	verbose := fs.Bool("verbose", false, "Show detailed execution information")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rag-lab query [options] <question>

Execute a query through the retrieval-augmented orchestrator.

Options:
  -config string
        Path to configuration file (default "config.json")
  -interactive
        Run in interactive mode for multiple queries
  -verbose
        Show detailed execution information (node-by-node trace)

Examples:
  # Single query
  rag-lab query "What are the main risk factors mentioned in the document?"

  # Interactive mode
  rag-lab query -interactive

  # With custom config
  rag-lab query -config prod.json "Analyze the financial trends"
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	system, err := common.InitializeSystem(config)
	if err != nil {
		return fmt.Errorf("failed to initialize system: %w", err)
	}
	defer system.Close()

	if *interactive {
		return runInteractiveQuery(system, *verbose)
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("question is required")
	}

	question := strings.Join(fs.Args(), " ")
	return executeQuery(system, question, *verbose)
}

func runInteractiveQuery(system *common.System, verbose bool) error {
	fmt.Println("RAG Lab - Interactive Mode")
	fmt.Println("Type 'exit' or 'quit' to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("Query> ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		if question == "exit" || question == "quit" {
			fmt.Println("Goodbye!")
			break
		}

		if err := executeQuery(system, question, verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

func executeQuery(system *common.System, question string, verbose bool) error {
	ctx := context.Background()
	turnID := uuid.New().String()

	fmt.Printf("Question: %s\n\n", question)

	if verbose {
		return streamQuery(ctx, system, turnID, question)
	}

	result, err := system.Engine.Run(ctx, turnID, question)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	displayResult(result)
	return nil
}

// streamQuery runs the query through Engine.Stream, printing a line per
// node transition before the final answer.
func streamQuery(ctx context.Context, system *common.System, turnID, question string) error {
	var final workflow.TurnState

	for ev := range system.Engine.Stream(ctx, turnID, question) {
		switch ev.Type {
		case workflow.EventNodeEntered:
			fmt.Printf("-> entering %s\n", ev.Node)
		case workflow.EventNodeCompleted:
			fmt.Printf("   completed %s (status=%s)\n", ev.Node, ev.State.WorkflowStatus)
		case workflow.EventTerminal:
			final = ev.State
		}
	}

	fmt.Println()
	displayResult(workflow.Result{
		Answer:     final.FinalAnswer,
		Confidence: final.Confidence,
		Warnings:   final.Warnings,
		Metadata:   final.Metadata,
	})
	return nil
}

func displayResult(result workflow.Result) {
	fmt.Println("=== Answer ===")
	if result.Answer != "" {
		fmt.Println(result.Answer)
	} else {
		fmt.Println("No final answer generated.")
	}
	fmt.Printf("\nConfidence: %.2f\n", result.Confidence)

	if len(result.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}
