package cascade_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/pi"
)

var _ = Describe("Cascade", func() {
	var (
		voltage *pi.Stage
		current *pi.Stage
		c       *cascade.Cascade
	)

	BeforeEach(func() {
		voltage = &pi.Stage{KP: 4, KI: 0.5, LowerLimit: 0, UpperLimit: 3, ReferencePoint: 50.4}
		current = &pi.Stage{KP: 0, KI: 0.75, LowerLimit: 0, UpperLimit: 100}

		var err error
		c, err = cascade.New(
			cascade.Named{Name: "voltage", Stage: voltage},
			cascade.Named{Name: "current", Stage: current},
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("feeds the saturated outer output into the inner reference", func() {
		phase, err := c.Tick(39.6, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Outputs()[0]).To(Equal(float32(3)))
		Expect(current.ReferencePoint).To(Equal(float32(3)))
		Expect(phase).To(Equal(float32(2.25)))
	})

	It("keeps each stage's memory separate", func() {
		_, err := c.Tick(39.6, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(voltage.PreviousOutput).To(Equal(float32(3)))
		Expect(current.PreviousOutput).To(Equal(float32(2.25)))
		Expect(current.Error).To(Equal(float32(3)))
	})

	DescribeTable("accumulates across ticks with a rising voltage",
		func(ticks int, expectedPhase float64) {
			voltage.KI = 0.75
			voltage.ReferencePoint = 49.6

			var phase float32
			for i := 0; i < ticks; i++ {
				var err error
				phase, err = c.Tick(39.6+0.1*float32(i), 0)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(c.Outputs()[0]).To(Equal(float32(3)))
			Expect(phase).To(BeNumerically("~", expectedPhase, 1e-3))
		},
		Entry("10 ticks", 10, 42.75),
		Entry("50 ticks", 50, 100.0),
	)

	It("backs off the current reference as the pack reaches the set voltage", func() {
		voltage.KI = 0.75
		voltage.ReferencePoint = 49.6
		voltage.PreviousError = 0.3
		voltage.PreviousOutput = 3
		current.PreviousError = 2.25
		current.PreviousOutput = 100

		operating := float32(49.3)
		var phase float32
		for i := 0; i < 10; i++ {
			var err error
			phase, err = c.Tick(operating, 3)
			Expect(err).NotTo(HaveOccurred())
			if operating < 49.6 {
				operating += 0.1
			}
		}

		Expect(current.ReferencePoint).To(BeNumerically("~", 1.775, 1e-3))
		Expect(phase).To(BeNumerically("~", 93.269, 1e-3))
	})

	It("clamps a negative measurement fault to the stage limits", func() {
		voltage.KI = 0.75
		current.KI = 0.5

		phase, err := c.Tick(-3, -3)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Outputs()[0]).To(Equal(float32(3)))
		Expect(phase).To(Equal(float32(3)))
	})

	It("rejects a wrong number of measurements", func() {
		_, err := c.Tick(1)
		Expect(err).To(MatchError(cascade.ErrMeasurementCount))
	})

	It("resets memory without touching tuning", func() {
		for i := 0; i < 5; i++ {
			_, err := c.Tick(40, 1)
			Expect(err).NotTo(HaveOccurred())
		}
		c.Reset()

		Expect(voltage.Memory()).To(Equal(pi.Memory{}))
		Expect(current.Memory()).To(Equal(pi.Memory{}))
		Expect(c.Outputs()).To(Equal([]float32{0, 0}))
		Expect(voltage.ReferencePoint).To(Equal(float32(50.4)))
		Expect(voltage.KP).To(Equal(float32(4)))
	})

	It("looks stages up by name", func() {
		Expect(c.Stage("current")).To(BeIdenticalTo(current))
		Expect(c.Stage("missing")).To(BeNil())
		Expect(c.Names()).To(Equal([]string{"voltage", "current"}))
		Expect(c.Len()).To(Equal(2))
	})

	It("validates construction", func() {
		_, err := cascade.New()
		Expect(err).To(MatchError(cascade.ErrNoStages))

		_, err = cascade.New(cascade.Named{Name: "a", Stage: voltage}, cascade.Named{Name: "a", Stage: current})
		Expect(err).To(MatchError(cascade.ErrDuplicateStage))

		_, err = cascade.New(cascade.Named{Name: "a"})
		Expect(err).To(HaveOccurred())
	})
})
