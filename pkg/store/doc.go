/*
Package store materializes pre-fit language-model tables for the ngram and
markov packages.

Two sources are provided. Store keeps any number of n-gram and Markov
tables in a single SQLite database, preserving row order, and supports
import/export as JSON documents, pruning and statistics. Dir reads tables
published as JSON files in the per-language directory layout used for
distribution. Both implement ngram.Source and markov.Source.
*/
package store
