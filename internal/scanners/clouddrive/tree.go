package clouddrive

// VirtualFolder is an in-memory folder tree built from a flat Drive file
// listing (spec §4.12: "builds a virtual folder tree from a flat listing").
type VirtualFolder struct {
	ID         string
	Name       string
	Files      []DriveFile
	Subfolders []*VirtualFolder
}

// BuildTree assembles rootID's subtree from a flat listing of every file
// reachable under it (folders and leaves alike).
func BuildTree(rootID, rootName string, all []DriveFile) *VirtualFolder {
	byParent := map[string][]DriveFile{}
	for _, f := range all {
		for _, p := range f.Parents {
			byParent[p] = append(byParent[p], f)
		}
	}
	return buildNode(rootID, rootName, byParent)
}

func buildNode(id, name string, byParent map[string][]DriveFile) *VirtualFolder {
	node := &VirtualFolder{ID: id, Name: name}
	for _, child := range byParent[id] {
		if child.IsFolder() {
			node.Subfolders = append(node.Subfolders, buildNode(child.ID, child.Name, byParent))
		} else {
			node.Files = append(node.Files, child)
		}
	}
	return node
}

// AllFilesRecursive returns every non-folder file under node, with its
// path relative to node joined by "/".
func (v *VirtualFolder) AllFilesRecursive() []struct {
	RelPath string
	File    DriveFile
} {
	var out []struct {
		RelPath string
		File    DriveFile
	}
	var walk func(node *VirtualFolder, prefix string)
	walk = func(node *VirtualFolder, prefix string) {
		for _, f := range node.Files {
			rel := f.Name
			if prefix != "" {
				rel = prefix + "/" + f.Name
			}
			out = append(out, struct {
				RelPath string
				File    DriveFile
			}{RelPath: rel, File: f})
		}
		for _, sub := range node.Subfolders {
			childPrefix := sub.Name
			if prefix != "" {
				childPrefix = prefix + "/" + sub.Name
			}
			walk(sub, childPrefix)
		}
	}
	walk(v, "")
	return out
}
