// Package manifest loads repo-tool XML manifests and resolves them into a
// single, merged project list.
//
// # Manifest Format
//
// A manifest is a <manifest> document declaring remotes, defaults and
// projects, optionally spread across several files through <include>:
//
//	<manifest>
//	  <remote name="yocto" fetch="https://git.yoctoproject.org" revision="scarthgap"/>
//	  <default remote="yocto"/>
//	  <project name="poky" path="sources/poky"/>
//	  <include name="bsp.xml"/>
//	</manifest>
//
// # Resolution
//
// Documents are visited depth first. Each document contributes its remotes
// and defaults, then its projects, then its includes, so an included file
// overrides the file that includes it. A project name seen again only
// overrides the attributes the later element sets. <remove-project> and
// <extend-project> are applied once all documents have been visited.
//
// # Usage
//
//	loader := manifest.NewLoader(manifest.LoaderOptions{Git: git.NewClient(logger)})
//	m, err := loader.LoadFile("default.xml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, p := range m.Projects {
//	    fmt.Println(p.Name, p.URL, p.Revision)
//	}
//
// # Error Handling
//
// Include cycles fail with *domain.ManifestCycleError. Malformed XML,
// missing includes, unknown remotes and projects without a revision fail
// with *domain.ManifestParseError.
package manifest
