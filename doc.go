// Package marketgame models month-to-month competition for market share
// within trading areas as a game.
//
// For every area and every transition between consecutive months, the
// share changes of the companies in the area are turned into an N x N
// payoff matrix (BuildTransition), which is then analyzed by three
// independent solvers from package matrixgame: fictitious play, replicator
// dynamics, and support enumeration on the 2x2 game between the two most
// active companies (SolveFocalEquilibria). Analyzer drives this over all
// areas and collects the results into a Report.
package marketgame
