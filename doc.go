// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spikeglm is the overall repository for inferring the functional
connectivity of a population of spiking neurons with a Bayesian generalized
linear model, using Polya-Gamma augmentation so that every weight update is
conjugate Gaussian.

This top-level of the repository has no functional code -- everything is organized
into the following sub-packages:

* glm: the model itself -- spike-and-slab synaptic weights under a network
prior, per-neuron biases and optional activation noise, with Gibbs sampling,
mean-field variational inference and its stochastic (SVI) variant, all driven
by Model.Fit.

* obs: the observation families (Bernoulli and negative binomial spike counts)
and the Polya-Gamma augmented data batches they operate on.

* basis: raised cosine basis functions that filter spike histories into the
covariates of the model.

* gauss: Gaussian conjugate updates in natural form, log odds of the
spike-and-slab indicators, and the entropy terms of the variational bound.

* pgdraw: the Polya-Gamma random variable sampler.

* examples: these compile into runnable programs.  examples/synthetic simulates
data from a random network and recovers it; examples/bench times inference for
networks of different sizes.
*/
package spikeglm
