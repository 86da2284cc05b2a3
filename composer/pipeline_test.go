package composer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/flowcraft/reactorpipe/aspect"
	"github.com/flowcraft/reactorpipe/core"
	"github.com/flowcraft/reactorpipe/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upperBangStep(name string) *step.Step {
	s := step.New(name, step.OneToOne, step.DefaultConfig())
	s.InType = ""
	s.OutType = ""
	s.OneToOne = func(ctx context.Context, in any) (any, error) {
		return strings.ToUpper(in.(string)) + "!", nil
	}
	return s
}

func TestComposeHappyPathOneToOne(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(upperBangStep("validate")))
	require.NoError(t, reg.Register(upperBangStep("enrich")))

	pipeline, err := NewBuilder(reg).WithOrder("validate", "enrich").Compose()
	require.NoError(t, err)

	in := make(chan any, 3)
	in <- "a"
	in <- "b"
	in <- "c"
	close(in)

	out := pipeline.RunStreamStream(context.Background(), in)
	values, errs := step.Values(out)
	require.Empty(t, errs)
	assert.Equal(t, []any{"A!!", "B!!", "C!!"}, values)
}

func TestRunUnaryUnarySingleItem(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(upperBangStep("validate")))

	pipeline, err := NewBuilder(reg).WithOrder("validate").Compose()
	require.NoError(t, err)

	result, err := pipeline.RunUnaryUnary(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "A!", result)
}

func TestComposeUnknownStepFails(t *testing.T) {
	reg := NewRegistry()
	_, err := NewBuilder(reg).WithOrder("missing").Compose()
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestComposeEmptyOrderFails(t *testing.T) {
	reg := NewRegistry()
	_, err := NewBuilder(reg).Compose()
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(upperBangStep("validate")))
	err := reg.Register(upperBangStep("validate"))
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestComposeWithAspectHandlerInsertsSideEffect(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(upperBangStep("A")))

	var observed []string
	pipeline, err := NewBuilder(reg).
		WithOrder("A").
		WithAspects(aspect.Aspect{Name: "audit", Enabled: true, Scope: aspect.Global, Position: aspect.AfterStep, Order: 0}).
		WithAspectHandler("audit", func(ctx context.Context, in any, a aspect.Aspect) error {
			observed = append(observed, in.(string))
			return nil
		}).
		Compose()
	require.NoError(t, err)

	result, err := pipeline.RunUnaryUnary(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "A!", result, "side-effect step re-emits the anchor's output unchanged")
	assert.Equal(t, []string{"A!"}, observed)
}

func TestRunStreamUnaryAggregates(t *testing.T) {
	reg := NewRegistry()
	sum := step.New("sum", step.ManyToOne, step.DefaultConfig())
	sum.Batch = func(ctx context.Context, batch []any) (any, error) {
		total := 0
		for _, v := range batch {
			total += v.(int)
		}
		return total, nil
	}
	sum.Config.BatchSize = 100
	sum.Config.BatchTimeout = 50 * time.Millisecond
	require.NoError(t, reg.Register(sum))

	pipeline, err := NewBuilder(reg).WithOrder("sum").Compose()
	require.NoError(t, err)

	in := make(chan any, 3)
	in <- 1
	in <- 2
	in <- 3
	close(in)

	result, err := pipeline.RunStreamUnary(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 6, result)
}
