// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glm

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/emer/emergent/v2/timer"
	"github.com/emer/spikeglm/basis"
	"github.com/emer/spikeglm/obs"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Model is a population of N neurons whose spike counts are a Family of
// the linear activation psi = bias + sum over presynaptic neurons of the
// basis-filtered spike history times the synaptic weights.  It holds the
// augmented data and runs Gibbs sampling or mean-field inference over all
// of its parameters.
type Model struct {
	N      int            `desc:"number of neurons"`
	B      int            `desc:"number of basis functions"`
	Params Params         `desc:"model parameters"`
	Basis  *mat.Dense     `desc:"L x B basis filtering spike histories into covariates"`
	Obs    *obs.Augmenter `desc:"Polya-Gamma augmented observation model"`
	Net    NetworkPrior   `desc:"prior over connections and weights"`
	Act    Activation     `desc:"activation model"`

	Weights Weights     `desc:"synaptic weight model"`
	Neurons []Neuron    `desc:"per-neuron biases and noise"`
	Data    []*obs.Data `desc:"augmented training data"`

	Rand     *rand.Rand             `view:"-" desc:"random stream of every draw not made by the weight threads"`
	FunTimes map[string]*timer.Time `view:"-" desc:"timers for each major function (step of inference)"`
}

// NewModel returns a model of net.NNeurons() neurons with spike-and-slab
// weights.  pars may be nil for defaults.
func NewModel(bs *mat.Dense, fam obs.Family, net NetworkPrior, pars *Params) (*Model, error) {
	if pars == nil {
		pars = &Params{}
		pars.Defaults()
	}
	pars.Update()
	if err := pars.Validate(); err != nil {
		return nil, err
	}
	if bs == nil || fam == nil || net == nil {
		return nil, errorf("basis, family and network prior are required")
	}
	l, b := bs.Dims()
	if l < 1 || b < 1 {
		return nil, fmt.Errorf("%w: basis is %dx%d", obs.ErrShape, l, b)
	}
	if net.NBasis() != b {
		return nil, fmt.Errorf("%w: network prior weight dimension %d, basis has %d functions", obs.ErrShape, net.NBasis(), b)
	}
	m := &Model{N: net.NNeurons(), B: b, Params: *pars, Basis: bs, Net: net}
	m.Rand = rand.New(rand.NewSource(pars.Seed))
	m.FunTimes = make(map[string]*timer.Time)
	m.Obs = obs.NewAugmenter(fam, m.Rand)
	m.Act = &LinearActivation{Model: m}
	m.Weights = NewSpikeAndSlab(net, m.Act, &m.Params.Wt, m.Params.NThreads, rand.New(rand.NewSource(m.Rand.Uint64())))
	m.Neurons = make([]Neuron, m.N)
	for i := range m.Neurons {
		nrn := &m.Neurons[i]
		nrn.Bias = pars.Bias.Mu
		nrn.MfBiasMu = pars.Bias.Mu
		nrn.MfBiasVar = pars.Bias.SigmaSq
		nrn.Eta = pars.Noise.Eta0
		nrn.MfEtaAlpha = pars.Noise.Alpha0
		nrn.MfEtaBeta = pars.Noise.Beta0
	}
	return m, nil
}

// SpikeAndSlab returns the weight model if it is a *SpikeAndSlab, else nil.
func (m *Model) SpikeAndSlab() *SpikeAndSlab {
	ss, _ := m.Weights.(*SpikeAndSlab)
	return ss
}

// UseNoWeights replaces the weight model with one that has no
// connections, making the model a bias-only baseline.
func (m *Model) UseNoWeights() {
	m.Weights = NewNoWeights(m.N, m.B)
}

// AddData filters the T x N spike counts s through the basis and adds
// them as a new augmented data batch.
func (m *Model) AddData(s *mat.Dense) (*obs.Data, error) {
	d, err := m.newData(s)
	if err != nil {
		return nil, err
	}
	if err := m.prepData(d); err != nil {
		return nil, err
	}
	m.Data = append(m.Data, d)
	return d, nil
}

func (m *Model) newData(s *mat.Dense) (*obs.Data, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil counts", obs.ErrShape)
	}
	if _, c := s.Dims(); c != m.N {
		return nil, fmt.Errorf("%w: counts have %d neurons, model has %d", obs.ErrShape, c, m.N)
	}
	return obs.NewData(s, basis.Filter(s, m.Basis))
}

// prepData validates and augments d, and initializes the latent
// activations of noisy neurons at the current mean activation.
func (m *Model) prepData(d *obs.Data) error {
	if err := m.Obs.Augment(d); err != nil {
		return err
	}
	if !m.Params.Noise.On {
		return nil
	}
	d.Psi = m.Act.ComputePsi(d)
	d.MfPsiMu = m.Act.MfExpectedPsi(d)
	d.MfPsiVar = mat.NewDense(d.T, d.N, nil)
	for n := 0; n < d.N; n++ {
		v := 1 / m.Neurons[n].MfExpectedEtaInv()
		for t := 0; t < d.T; t++ {
			d.MfPsiVar.Set(t, n, v)
		}
	}
	return nil
}

// Minibatches cuts every data batch into consecutive pieces of at most
// size bins, each augmented on its own, for SVI.
func (m *Model) Minibatches(size int) ([]*obs.Data, error) {
	if size < 1 {
		return nil, errorf("minibatch size %d must be positive", size)
	}
	var mbs []*obs.Data
	for _, d := range m.Data {
		for st := 0; st < d.T; st += size {
			mb, err := d.Slice(st, min(st+size, d.T))
			if err != nil {
				return nil, err
			}
			if err := m.prepData(mb); err != nil {
				return nil, err
			}
			mbs = append(mbs, mb)
		}
	}
	return mbs, nil
}

// TotalT is the number of time bins over all data.
func (m *Model) TotalT() int {
	nt := 0
	for _, d := range m.Data {
		nt += d.T
	}
	return nt
}

// Generate simulates T bins of spike counts from the current parameters,
// filtering the simulated history through the basis as it goes.
// It returns the counts and the activations that produced them.
func (m *Model) Generate(T int) (s, psi *mat.Dense, err error) {
	if T < 1 {
		return nil, nil, errorf("number of bins %d must be positive", T)
	}
	s = mat.NewDense(T, m.N, nil)
	psi = mat.NewDense(T, m.N, nil)
	frows := make([][]float64, m.N)
	for i := range frows {
		frows[i] = make([]float64, m.B)
	}
	for t := 0; t < T; t++ {
		for pre := 0; pre < m.N; pre++ {
			basis.FilterRow(frows[pre], func(i int) float64 { return s.At(i, pre) }, t, m.Basis)
		}
		for post := 0; post < m.N; post++ {
			p := m.Neurons[post].Bias
			for pre := 0; pre < m.N; pre++ {
				if m.Weights.Connected(pre, post) {
					p += dotSlice(frows[pre], m.Weights.WEffective(pre, post))
				}
			}
			if m.Params.Noise.On {
				p += math.Sqrt(m.Neurons[post].Eta) * m.Rand.NormFloat64()
			}
			psi.Set(t, post, p)
			s.Set(t, post, m.Obs.Family.Rand(p, m.Rand))
		}
	}
	return s, psi, nil
}

// LogLikelihood is the log likelihood of all data at the current mean
// activation.  For noisy neurons this ignores the activation noise.
func (m *Model) LogLikelihood() float64 {
	ll := 0.0
	for _, d := range m.Data {
		ll += m.Obs.LogLikelihood(d.S, m.Act.ComputePsi(d))
	}
	return ll
}

// HeldoutLogLikelihood is the log likelihood of counts s that were not
// used for inference, at the current mean activation.
func (m *Model) HeldoutLogLikelihood(s *mat.Dense) (float64, error) {
	d, err := m.newData(s)
	if err != nil {
		return 0, err
	}
	if err := obs.CheckCounts(m.Obs.Family, s); err != nil {
		return 0, err
	}
	return m.Obs.LogLikelihood(d.S, m.Act.ComputePsi(d)), nil
}

// MeanCounts is the expected count of every cell of d.
func (m *Model) MeanCounts(d *obs.Data) *mat.Dense {
	return m.Obs.ExpectedS(m.Act.ComputePsi(d))
}

// StdCounts is the standard deviation of the count of every cell of d.
func (m *Model) StdCounts(d *obs.Data) *mat.Dense {
	return m.Obs.StdS(m.Act.ComputePsi(d))
}

// LogPrior is ln p(bias, A, W, eta) under the priors.
func (m *Model) LogPrior() float64 {
	lp := m.Weights.LogPrior()
	for post := 0; post < m.N; post++ {
		lp += m.biasLogPrior(post)
		if m.Params.Noise.On {
			lp += m.noiseLogPrior(post)
		}
	}
	return lp
}

// Resample runs one Gibbs iteration.  The auxiliary variables of every cell
// (and latent activations of noisy neurons) are redrawn first, so no weight
// is ever updated against stale omega.  The biases and one weight sweep
// follow, with the noise variances last.
func (m *Model) Resample() error {
	m.FunTimerStart("Augment")
	for _, d := range m.Data {
		psi := m.Act.ComputePsi(d)
		if !m.Params.Noise.On {
			m.Obs.Resample(d, psi)
			continue
		}
		m.Obs.Resample(d, d.Psi)
		col := make([]float64, d.T)
		for post := 0; post < m.N; post++ {
			mat.Col(col, post, psi)
			m.resamplePsi(d, post, col)
		}
	}
	m.FunTimerStop("Augment")

	m.FunTimerStart("Bias")
	for post := 0; post < m.N; post++ {
		if err := m.resampleBias(post); err != nil {
			m.FunTimerStop("Bias")
			return err
		}
	}
	m.FunTimerStop("Bias")

	m.FunTimerStart("Weights")
	err := m.Weights.Resample(m.Data)
	m.FunTimerStop("Weights")
	if err != nil {
		return err
	}

	if m.Params.Noise.On {
		m.FunTimerStart("Noise")
		for post := 0; post < m.N; post++ {
			m.resampleEta(post)
		}
		m.FunTimerStop("Noise")
	}
	return nil
}

// MeanFieldUpdate runs one coordinate ascent sweep over all factors:
// q(psi) and q(omega), then q(bias), q(A, W), and q(eta).
func (m *Model) MeanFieldUpdate() error {
	return m.mfStep(m.Data, 1, 1)
}

// SVIStep runs one stochastic variational step on the minibatch ds, which
// holds fraction minibatchFrac of the data, with the given step size.
// The local factors of ds are optimized fully, the global ones damped.
func (m *Model) SVIStep(ds []*obs.Data, minibatchFrac, stepSize float64) error {
	if !(minibatchFrac > 0 && minibatchFrac <= 1) {
		return errorf("minibatch fraction %v not in (0,1]", minibatchFrac)
	}
	if !(stepSize > 0 && stepSize <= 1) {
		return errorf("step size %v not in (0,1]", stepSize)
	}
	return m.mfStep(ds, 1/minibatchFrac, stepSize)
}

func (m *Model) mfStep(ds []*obs.Data, scale, step float64) error {
	m.FunTimerStart("MfAugment")
	for _, d := range ds {
		m.mfAugment(d)
	}
	m.FunTimerStop("MfAugment")

	m.FunTimerStart("MfBias")
	for post := 0; post < m.N; post++ {
		if err := m.mfUpdateBias(ds, post, scale, step); err != nil {
			m.FunTimerStop("MfBias")
			return err
		}
	}
	m.FunTimerStop("MfBias")

	m.FunTimerStart("MfWeights")
	var err error
	if scale == 1 && step == 1 {
		err = m.Weights.MeanFieldUpdate(ds)
	} else {
		err = m.Weights.SVIStep(ds, 1/scale, step)
	}
	m.FunTimerStop("MfWeights")
	if err != nil {
		return err
	}

	if m.Params.Noise.On {
		m.FunTimerStart("MfNoise")
		for post := 0; post < m.N; post++ {
			m.mfUpdateEta(ds, post, scale, step)
		}
		m.FunTimerStop("MfNoise")
	}
	return nil
}

// mfAugment updates the local factors of d: q(psi) for noisy neurons,
// then q(omega) from the second moment of the activation.
func (m *Model) mfAugment(d *obs.Data) {
	if !m.Params.Noise.On {
		m.Obs.MeanFieldUpdate(d, m.Act.MfExpectedPsiSq(d))
		return
	}
	mean := make([]float64, d.T)
	for post := 0; post < m.N; post++ {
		m.Act.MfExpectedPsiNeuron(d, post, mean)
		m.mfUpdatePsi(d, post, mean)
	}
	m.Obs.MeanFieldUpdate(d, m.mfPsiSq(d))
}

// mfPsiSq is E[psi^2] of the latent activations of noisy neurons.
func (m *Model) mfPsiSq(d *obs.Data) *mat.Dense {
	sq := mat.NewDense(d.T, d.N, nil)
	sq.Apply(func(i, j int, v float64) float64 { return v*v + d.MfPsiVar.At(i, j) }, d.MfPsiMu)
	return sq
}

// VLB is the variational lower bound on the log marginal likelihood of
// all data under the current variational posterior.
func (m *Model) VLB() float64 {
	vlb := 0.0
	for _, d := range m.Data {
		if m.Params.Noise.On {
			vlb += m.Obs.VLB(d, d.MfPsiMu, m.mfPsiSq(d))
		} else {
			vlb += m.Obs.VLB(d, m.Act.MfExpectedPsi(d), m.Act.MfExpectedPsiSq(d))
		}
	}
	for post := 0; post < m.N; post++ {
		vlb += m.biasVLB(post)
		if m.Params.Noise.On {
			vlb += m.noiseVLB(post)
		}
	}
	return vlb + m.Weights.VLB()
}

// ResampleFromMF sets the sampled parameters to a draw from the
// variational posterior.
func (m *Model) ResampleFromMF() error {
	for post := 0; post < m.N; post++ {
		m.resampleBiasFromMF(post)
		if m.Params.Noise.On {
			m.resampleEtaFromMF(post)
		}
	}
	return m.Weights.ResampleFromMF()
}

// Adjacency returns the N x N [pre, post] connection indicators.
func (m *Model) Adjacency() *mat.Dense {
	a := mat.NewDense(m.N, m.N, nil)
	for pre := 0; pre < m.N; pre++ {
		for post := 0; post < m.N; post++ {
			if m.Weights.Connected(pre, post) {
				a.Set(pre, post, 1)
			}
		}
	}
	return a
}

// WEffective returns A * W flattened as [(pre * N + post) * B + b].
func (m *Model) WEffective() []float64 {
	w := make([]float64, 0, m.N*m.N*m.B)
	for pre := 0; pre < m.N; pre++ {
		for post := 0; post < m.N; post++ {
			w = append(w, m.Weights.WEffective(pre, post)...)
		}
	}
	return w
}

// NeuronValues returns the named Neuron variable of every neuron.
func (m *Model) NeuronValues(varNm string) ([]float64, error) {
	vi, err := NeuronVarIdxByName(varNm)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, m.N)
	for i := range m.Neurons {
		vals[i] = m.Neurons[i].VarByIndex(vi)
	}
	return vals, nil
}

//////////////////////////////////////////////////////////////////////////////////////
//  Reports

// SizeReport returns a string reporting the memory footprint of the model
// and of each data batch.
func (m *Model) SizeReport() string {
	var b strings.Builder
	fl := int(unsafe.Sizeof(float64(0)))
	neurMem := m.N * int(unsafe.Sizeof(Neuron{}))
	syn := 0
	synMem := 0
	if ss := m.SpikeAndSlab(); ss != nil {
		syn = len(ss.Syns)
		synMem = syn * (int(unsafe.Sizeof(Synapse{})) + fl*(2*m.B+m.B*m.B))
	}
	fmt.Fprintf(&b, "%14s:\t Neurons: %d\t NeurMem: %v \t Syns: %d \t SynMem: %v\n", "Model", m.N,
		(datasize.ByteSize)(neurMem).HumanReadable(), syn, (datasize.ByteSize)(synMem).HumanReadable())
	dataMem := 0
	for i, d := range m.Data {
		cells := d.T * d.N
		nmat := 6 // S, Bv, Kappa, Omega, MfC, MfOmega
		if d.Psi != nil {
			nmat += 3
		}
		dmem := fl * (nmat*cells + cells*d.B)
		dataMem += dmem
		fmt.Fprintf(&b, "\t%14s:\t Bins: %d\t DataMem: %v\n", fmt.Sprintf("Data %d", i), d.T, (datasize.ByteSize)(dmem).HumanReadable())
	}
	fmt.Fprintf(&b, "%14s:\t %v\n", "Total", (datasize.ByteSize)(neurMem+synMem+dataMem).HumanReadable())
	return b.String()
}

// TimerReport returns the amount of time spent in each function.
func (m *Model) TimerReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TimerReport: NThreads: %v\n", m.Params.NThreads)
	fmt.Fprintf(&b, "\t%13s \t%7s\t%7s\n", "Function Name", "Secs", "Pct")
	fnms := make([]string, 0, len(m.FunTimes))
	for k := range m.FunTimes {
		fnms = append(fnms, k)
	}
	sort.Strings(fnms)
	secs := make([]float64, len(fnms))
	tot := 0.0
	for i, fn := range fnms {
		secs[i] = m.FunTimes[fn].TotalSecs()
		tot += secs[i]
	}
	for i, fn := range fnms {
		pct := 0.0
		if tot > 0 {
			pct = 100 * secs[i] / tot
		}
		fmt.Fprintf(&b, "\t%13s \t%7.3f\t%7.1f\n", fn, secs[i], pct)
	}
	fmt.Fprintf(&b, "\t%13s \t%7.3f\n", "Total", tot)
	return b.String()
}

// FunTimerStart starts function timer for given function name -- ensures creation of timer
func (m *Model) FunTimerStart(fun string) {
	ft, ok := m.FunTimes[fun]
	if !ok {
		ft = &timer.Time{}
		m.FunTimes[fun] = ft
	}
	ft.Start()
}

// FunTimerStop stops function timer -- timer must already exist
func (m *Model) FunTimerStop(fun string) {
	ft := m.FunTimes[fun]
	ft.Stop()
}

// FunTimerReset resets all function timers
func (m *Model) FunTimerReset() {
	for _, ft := range m.FunTimes {
		ft.Reset()
	}
}
