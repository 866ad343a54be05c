// run_cmd.go walks a caretaker through a routine instance step by step.
package stablecli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hoofbeat/stableops/careflow"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/spf13/cobra"
)

var runnerCmd = &cobra.Command{
	Use:   "run <instance-id>",
	Short: "Execute a routine instance step by step.",
	Long: `Walk through a scheduled routine: acknowledge the day's notes, then
work each step in order, marking horses done or skipped, until the
instance completes.

Interactive commands inside a step:
  done <n|all>       mark horse n (or every remaining horse) done
  skip <n> [reason]  mark horse n skipped
  note <n> <text>    attach a note to horse n
  ok [notes]         submit the step and advance
  skipstep [reason]  skip the whole step
  cancel [reason]    cancel the routine
  status             reprint the current step

With --auto every remaining horse is marked done and each step is
submitted without prompting.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunner,
}

func init() {
	runnerCmd.Flags().Bool("auto", false, "Complete every step without prompting")
}

func runRunner(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	auto, _ := cmd.Flags().GetBool("auto")

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	orchestrator := careflow.NewOrchestrator(svc.Routine, svc.Notes, svc.Horses, cfg.Caretaker)
	if err := orchestrator.Load(ctx, args[0]); err != nil {
		return err
	}

	runner := &instanceRunner{
		orchestrator: orchestrator,
		input:        bufio.NewScanner(os.Stdin),
		auto:         auto,
	}
	return runner.run(ctx)
}

type instanceRunner struct {
	orchestrator *careflow.Orchestrator
	input        *bufio.Scanner
	auto         bool
}

func (r *instanceRunner) run(ctx context.Context) error {
	for {
		state := r.orchestrator.State()
		switch state.Kind {
		case careflow.StateDailyNotesAcknowledgment:
			if err := r.acknowledge(ctx, state); err != nil {
				return err
			}
		case careflow.StateStepExecution:
			if err := r.workStep(ctx, state); err != nil {
				return err
			}
		case careflow.StateCompleted:
			fmt.Println("Routine completed.")
			return nil
		case careflow.StateError:
			return fmt.Errorf("%s", state.Message)
		default:
			return fmt.Errorf("unexpected flow state %q", state.Kind)
		}
	}
}

func (r *instanceRunner) acknowledge(ctx context.Context, state careflow.FlowState) error {
	fmt.Println("Daily notes need acknowledgment:")
	printNotes(state.Notes)
	if !r.auto {
		fmt.Print("Press enter to acknowledge... ")
		r.input.Scan()
	}
	return r.orchestrator.AcknowledgeDailyNotes(ctx)
}

func (r *instanceRunner) printStep(state careflow.FlowState) {
	fmt.Printf("\nStep %d/%d: %s\n", state.StepIndex+1, state.TotalSteps, state.Step.Name)
	if len(state.Horses) == 0 {
		fmt.Println("  (no horses, confirmation only)")
		return
	}
	for i, horse := range state.Horses {
		entry := state.Progress[horse.ID]
		mark := " "
		switch {
		case entry.Completed:
			mark = "x"
		case entry.Skipped:
			mark = "s"
		}
		fmt.Printf("  [%s] %d. %s\n", mark, i+1, horse.Name)
	}
}

func (r *instanceRunner) workStep(ctx context.Context, state careflow.FlowState) error {
	r.printStep(state)

	if r.auto {
		r.orchestrator.MarkAllRemainingDone()
		return r.orchestrator.CompleteCurrentStep(ctx, "")
	}

	for {
		fmt.Print("> ")
		if !r.input.Scan() {
			return fmt.Errorf("input closed before the routine finished")
		}
		line := strings.TrimSpace(r.input.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		command, rest := fields[0], fields[1:]

		current := r.orchestrator.State()
		switch command {
		case "done":
			if len(rest) == 1 && rest[0] == "all" {
				r.orchestrator.MarkAllRemainingDone()
				break
			}
			horse, err := pickHorse(current, rest)
			if err != nil {
				fmt.Println(err)
				break
			}
			r.orchestrator.MarkHorseDone(horse.ID)
		case "skip":
			horse, err := pickHorse(current, rest)
			if err != nil {
				fmt.Println(err)
				break
			}
			r.orchestrator.MarkHorseSkipped(horse.ID, strings.Join(restAfter(rest, 1), " "))
		case "note":
			horse, err := pickHorse(current, rest)
			if err != nil {
				fmt.Println(err)
				break
			}
			r.orchestrator.UpdateHorseNotes(horse.ID, strings.Join(restAfter(rest, 1), " "))
		case "ok":
			if !r.orchestrator.CanProceed() {
				fmt.Println("Some horses are unmarked; mark them done or skipped, or submit anyway with 'ok!'.")
				break
			}
			return r.orchestrator.CompleteCurrentStep(ctx, strings.Join(rest, " "))
		case "ok!":
			// server-side validation is the arbiter
			return r.orchestrator.CompleteCurrentStep(ctx, strings.Join(rest, " "))
		case "skipstep":
			return r.orchestrator.SkipCurrentStep(ctx, strings.Join(rest, " "))
		case "cancel":
			if err := r.orchestrator.Cancel(ctx, strings.Join(rest, " ")); err != nil {
				return err
			}
			fmt.Println("Routine cancelled.")
			return nil
		case "status":
			r.printStep(r.orchestrator.State())
		default:
			fmt.Printf("Unknown command %q.\n", command)
		}
	}
}

// pickHorse resolves the first argument as a 1-based index or a horse name.
func pickHorse(state careflow.FlowState, args []string) (*stabletypes.Horse, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("which horse? use its number or name")
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(state.Horses) {
			return nil, fmt.Errorf("no horse %d in this step", n)
		}
		return state.Horses[n-1], nil
	}
	for _, horse := range state.Horses {
		if strings.EqualFold(horse.Name, args[0]) {
			return horse, nil
		}
	}
	return nil, fmt.Errorf("no horse named %q in this step", args[0])
}

func restAfter(args []string, n int) []string {
	if len(args) <= n {
		return nil
	}
	return args[n:]
}
