package cascade_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/pi"
)

var _ = Describe("Charger", func() {
	var (
		voltage     *pi.Stage
		current     *pi.Stage
		charger     *cascade.Charger
		transitions [][2]cascade.Mode
	)

	BeforeEach(func() {
		voltage = &pi.Stage{KP: 4, KI: 0.75, LowerLimit: 0, UpperLimit: 3, ReferencePoint: 50.4}
		current = &pi.Stage{KI: 0.75, LowerLimit: 0, UpperLimit: 100}
		transitions = nil

		var err error
		charger, err = cascade.NewCharger(cascade.ChargerConfig{
			ChargeCurrent:      3,
			CVThreshold:        49.6,
			TerminationCurrent: 0.1,
		}, voltage, current)
		Expect(err).NotTo(HaveOccurred())
		charger.OnModeChange(func(from, to cascade.Mode) {
			transitions = append(transitions, [2]cascade.Mode{from, to})
		})
	})

	It("starts in constant current with a fixed reference", func() {
		Expect(charger.Mode()).To(Equal(cascade.ModeConstantCurrent))

		phase := charger.Step(45, 0)
		Expect(charger.CurrentReference()).To(Equal(float32(3)))
		Expect(phase).To(Equal(float32(2.25)))
		Expect(voltage.Memory()).To(Equal(pi.Memory{}))
	})

	It("clears voltage windup when switching to constant voltage", func() {
		voltage.PreviousOutput = 3
		voltage.PreviousError = 0.3

		charger.Step(49.7, 3)

		Expect(charger.Mode()).To(Equal(cascade.ModeConstantVoltage))
		Expect(transitions).To(Equal([][2]cascade.Mode{{cascade.ModeConstantCurrent, cascade.ModeConstantVoltage}}))
		Expect(voltage.PreviousError).To(BeNumerically("~", 0.525, 1e-5))
		Expect(voltage.PreviousOutput).To(BeNumerically("~", 0.525, 1e-5))
		Expect(charger.CurrentReference()).To(Equal(float32(3)))
	})

	It("terminates once the voltage stage no longer asks for current", func() {
		charger.Step(49.7, 3)
		phase := charger.Step(51, 3)

		Expect(charger.Mode()).To(Equal(cascade.ModeDone))
		Expect(phase).To(Equal(float32(0)))
		Expect(current.Memory()).To(Equal(pi.Memory{}))
		Expect(charger.Step(40, 0)).To(Equal(float32(0)))
		Expect(charger.Mode()).To(Equal(cascade.ModeDone))
	})

	It("holds the current stage lower limit once done", func() {
		current.LowerLimit = 5

		charger.Step(49.7, 3)
		Expect(charger.Step(51, 3)).To(Equal(float32(5)))
		Expect(charger.Mode()).To(Equal(cascade.ModeDone))
		Expect(charger.Step(40, 0)).To(Equal(float32(5)))
	})

	It("restarts in constant current after a reset", func() {
		charger.Step(49.7, 3)
		charger.Step(51, 3)
		charger.Reset()

		Expect(charger.Mode()).To(Equal(cascade.ModeConstantCurrent))
		Expect(transitions).To(HaveLen(3))
		Expect(voltage.Memory()).To(Equal(pi.Memory{}))
		Expect(current.Memory()).To(Equal(pi.Memory{}))
	})
})

var _ = Describe("Mode", func() {
	It("names every mode", func() {
		Expect(cascade.ModeConstantCurrent.String()).To(Equal("cc"))
		Expect(cascade.ModeConstantVoltage.String()).To(Equal("cv"))
		Expect(cascade.ModeDone.String()).To(Equal("done"))
		Expect(cascade.Mode(9).String()).To(Equal("mode(9)"))
	})
})
