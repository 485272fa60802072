// Package annotation manages the shapes of the image currently being
// annotated.
//
// A Set moves through three states:
//
//	Empty --Open--> Clean --mutation--> Dirty --Save--> Clean
//	  ^                                                  |
//	  +------------------- Close / Open -----------------+
//
// Every mutation (add, remove, label, difficulty, color or geometry change)
// marks the set dirty, clears the verified flag and recomputes overlap
// warnings. A failed save leaves the dirty flag as it was.
//
// Shapes are addressed through EntryIDs. The Set owns both directions of the
// mapping between entries and shapes; shapes themselves carry no back
// reference.
//
// A Set is not safe for concurrent use. Transports serialize access.
package annotation
