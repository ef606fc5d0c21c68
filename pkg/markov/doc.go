/*
Package markov generates text by walking a pre-fit Markov transition table.

A Table maps a fixed-length context of tokens to the weighted tokens that
may follow it. A Chain performs a bounded random walk over a Table: it
starts from a seed (or a random recorded context), samples each next token
in proportion to the recorded weights, slides its context window, and
recovers from dead ends by jumping to a random recorded context a bounded
number of times before giving up. Generated sub-word tokens have their
boundary marker stripped before being joined into text.

Tables are immutable after construction and a Chain guards its random
source, so both can be shared across goroutines. Tests inject a seeded
source with WithRand to get reproducible output.
*/
package markov
