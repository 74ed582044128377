// Package storage stores audio blobs for the node and the identification
// engine.
//
// Clips and subclips are immutable and addressed by the sha256 of their
// bytes through BlobStore. Backends register themselves by provider name:
//
//   - storage/local: a directory on disk
//   - storage/s3: Amazon S3 or an S3-compatible service such as MinIO
//   - memory: in-process, built in
//
// Configuration:
//
//	storage:
//	  provider: "s3"
//	  bucket: "voiceid"
//	  region: "us-east-1"
//	  endpoint: "http://minio:9000"
package storage
