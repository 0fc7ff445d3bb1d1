package types

// Cursor marks the client's position in the server update stream.
type Cursor struct {
	Pts  int32
	Qts  int32
	Seq  int32
	Date int32
}
