// Package classify assigns release categories to album folders and scores how
// closely an artist folder follows the collection's preferred layout.
//
// Classification is keyword driven: an explicit category hint in the folder
// name wins, then title keywords, then track-count heuristics, then the
// default category. Compliance scoring combines naming (year prefixes),
// placement (category folders versus artist root) and consistency (empty
// category folders, misfiled hints) into a 0-100 score.
package classify
