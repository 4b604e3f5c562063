package cucumber

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures executes the throttle and difficulty scenarios via godog.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "learngames",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("..", "..", "features")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeScenario wires step definitions for the feature files.
func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &scenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^the clock reads (\d+)$`, state.clockReads)
	ctx.Step(`^(\d+) minutes pass$`, state.minutesPass)

	ctx.Step(`^a throttle for "([^"]+)" with limit (\d+) and cooldown (\d+) minutes$`, state.givenThrottle)
	ctx.Step(`^the action is recorded$`, state.recordAction)
	ctx.Step(`^the action is recorded (\d+) times$`, state.recordActionTimes)
	ctx.Step(`^the result is (locked|unlocked)$`, state.resultIs)
	ctx.Step(`^the throttle is (locked|unlocked)$`, state.throttleIs)
	ctx.Step(`^the lock end time is (\d+)$`, state.lockEndTimeIs)
	ctx.Step(`^the stored count is (\d+)$`, state.storedCountIs)
	ctx.Step(`^expired locks are reconciled$`, state.reconcile)
	ctx.Step(`^the throttle is reset$`, state.resetThrottle)

	ctx.Step(`^a fresh math tracker$`, state.freshTracker)
	ctx.Step(`^a math tracker at (easy|medium|hard)$`, state.trackerAt)
	ctx.Step(`^(\d+) (correct|wrong) answers are recorded$`, state.recordAnswers)
	ctx.Step(`^the difficulty is (easy|medium|hard)$`, state.difficultyIs)
	ctx.Step(`^the best streak is (\d+)$`, state.bestStreakIs)
	ctx.Step(`^(\d+) (easy|medium|hard) problems are generated$`, state.generateProblems)
	ctx.Step(`^every problem is an addition with operands between (\d+) and (\d+)$`, state.everyAdditionBetween)
	ctx.Step(`^every addition has num1 between (\d+) and (\d+) and a sum of at most (\d+)$`, state.everyAdditionBounded)
	ctx.Step(`^every subtraction has num1 between (\d+) and (\d+) and num2 between (\d+) and (\d+)$`, state.everySubtractionBounded)
	ctx.Step(`^a challenge problem is generated for attempt (\d+)$`, state.challengeForAttempt)
	ctx.Step(`^its difficulty is (easy|medium|hard)$`, state.challengeDifficultyIs)
}
